// Package neo4j projects classified documents into a property graph of
// clients, documents, people and organizations.
package neo4j

import (
	"context"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/kirillkom/legal-intake/internal/core/domain"
)

type statement struct {
	cypher string
	params map[string]any
}

type Graph struct {
	driver   neo4j.DriverWithContext
	database string
	run      func(ctx context.Context, stmts []statement) error
}

func New(ctx context.Context, uri, user, password, database string) (*Graph, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("verify neo4j connectivity: %w", err)
	}
	g := &Graph{driver: driver, database: database}
	g.run = g.execute
	return g, nil
}

func (g *Graph) Close(ctx context.Context) error {
	if g.driver == nil {
		return nil
	}
	return g.driver.Close(ctx)
}

func (g *Graph) execute(ctx context.Context, stmts []statement) error {
	for _, st := range stmts {
		opts := []neo4j.ExecuteQueryConfigurationOption{}
		if g.database != "" {
			opts = append(opts, neo4j.ExecuteQueryWithDatabase(g.database))
		}
		if _, err := neo4j.ExecuteQuery(ctx, g.driver, st.cypher, st.params, neo4j.EagerResultTransformer, opts...); err != nil {
			return fmt.Errorf("neo4j query: %w", err)
		}
	}
	return nil
}

// ProjectDocument replaces the document's outgoing mentions with the entities
// of its current classification.
func (g *Graph) ProjectDocument(ctx context.Context, doc domain.DocumentClassification) error {
	return g.run(ctx, projectStatements(doc))
}

func (g *Graph) DeleteDocument(ctx context.Context, documentID string) error {
	return g.run(ctx, []statement{{
		cypher: `MATCH (d:Document {id: $document_id}) DETACH DELETE d`,
		params: map[string]any{"document_id": documentID},
	}, pruneOrphans()})
}

func (g *Graph) DeleteClient(ctx context.Context, clientID int64) error {
	return g.run(ctx, []statement{{
		cypher: `MATCH (c:Client {id: $client_id})
OPTIONAL MATCH (c)-[:OWNS]->(d:Document)
DETACH DELETE d, c`,
		params: map[string]any{"client_id": clientID},
	}, pruneOrphans()})
}

func projectStatements(doc domain.DocumentClassification) []statement {
	cls := doc.Classification
	stmts := []statement{{
		cypher: `MERGE (d:Document {id: $document_id})
SET d.filename = $filename, d.doc_type = $doc_type, d.matter_id = $matter_id, d.summary = $summary
WITH d
OPTIONAL MATCH (d)-[m:MENTIONS]->()
DELETE m`,
		params: map[string]any{
			"document_id": doc.DocumentID,
			"filename":    doc.Filename,
			"doc_type":    string(cls.DocType),
			"matter_id":   derefString(cls.MatterID),
			"summary":     cls.Summary,
		},
	}}
	if doc.ClientID != nil {
		stmts = append(stmts, statement{
			cypher: `MERGE (c:Client {id: $client_id})
WITH c
MATCH (d:Document {id: $document_id})
MERGE (c)-[:OWNS]->(d)`,
			params: map[string]any{"client_id": *doc.ClientID, "document_id": doc.DocumentID},
		})
	}
	if people := entityNames(cls.KeyEntities.People); len(people) > 0 {
		stmts = append(stmts, mentionStatement("Person", doc.DocumentID, people))
	}
	if orgs := entityNames(cls.KeyEntities.Organizations); len(orgs) > 0 {
		stmts = append(stmts, mentionStatement("Organization", doc.DocumentID, orgs))
	}
	return stmts
}

func mentionStatement(label, documentID string, names []string) statement {
	return statement{
		cypher: `MATCH (d:Document {id: $document_id})
UNWIND $names AS name
MERGE (e:` + label + ` {name: name})
MERGE (d)-[:MENTIONS]->(e)`,
		params: map[string]any{"document_id": documentID, "names": names},
	}
}

func pruneOrphans() statement {
	return statement{cypher: `MATCH (e) WHERE (e:Person OR e:Organization) AND NOT (e)<-[:MENTIONS]-() DELETE e`}
}

// entityNames trims and dedupes names case-insensitively, keeping the first spelling.
func entityNames(values []string) []string {
	seen := make(map[string]bool, len(values))
	names := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		key := strings.ToLower(v)
		if v == "" || seen[key] {
			continue
		}
		seen[key] = true
		names = append(names, v)
	}
	return names
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
