package domain

import (
	"fmt"
	"strings"
	"time"
)

type DocType string

const (
	DocTypeContract DocType = "contract"
	DocTypeInvoice  DocType = "invoice"
	DocTypeEmail    DocType = "email"
	DocTypeReport   DocType = "report"
	DocTypeMemo     DocType = "memo"
	DocTypeLegal    DocType = "legal"
	DocTypeOther    DocType = "other"
)

var DocTypes = []DocType{
	DocTypeContract, DocTypeInvoice, DocTypeEmail, DocTypeReport, DocTypeMemo, DocTypeLegal, DocTypeOther,
}

func ParseDocType(value string) (DocType, bool) {
	value = strings.ToLower(strings.TrimSpace(value))
	for _, t := range DocTypes {
		if string(t) == value {
			return t, true
		}
	}
	return "", false
}

type KeyEntities struct {
	People        []string `json:"people"`
	Organizations []string `json:"organizations"`
	Dates         []string `json:"dates"`
	Amounts       []string `json:"amounts"`
}

func (k KeyEntities) Normalized() KeyEntities {
	return KeyEntities{
		People:        nonNil(k.People),
		Organizations: nonNil(k.Organizations),
		Dates:         nonNil(k.Dates),
		Amounts:       nonNil(k.Amounts),
	}
}

type Classification struct {
	DocType     DocType     `json:"doc_type"`
	MatterID    *string     `json:"matter_id"`
	Tags        []string    `json:"tags"`
	KeyEntities KeyEntities `json:"key_entities"`
	Summary     string      `json:"summary"`
	Confidence  float64     `json:"confidence"`
}

// FallbackClassification is substituted when the model output cannot be used.
func FallbackClassification() Classification {
	return Classification{
		DocType:     DocTypeOther,
		Tags:        []string{},
		KeyEntities: KeyEntities{}.Normalized(),
		Summary:     "Document could not be classified",
		Confidence:  0,
	}
}

// DocumentClassification is the persisted document row, upserted on DocumentID.
type DocumentClassification struct {
	DocumentID       string         `json:"document_id"`
	Filename         string         `json:"filename"`
	FilePath         string         `json:"file_path,omitempty"`
	ClientID         *int64         `json:"client_id"`
	Classification   Classification `json:"classification"`
	OriginalMetadata map[string]any `json:"original_metadata,omitempty"`
	TextPreview      string         `json:"text_preview,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

type ClassificationResult struct {
	DocumentID     string         `json:"document_id"`
	Classification Classification `json:"classification"`
}

type DocumentFilter struct {
	ClientID *int64
	Query    string
	DocType  DocType
	MatterID string
	Limit    int
}

type DocumentStats struct {
	Total  int             `json:"total"`
	ByType map[DocType]int `json:"by_type"`
}

func NewDocumentStats() DocumentStats {
	byType := make(map[DocType]int, len(DocTypes))
	for _, t := range DocTypes {
		byType[t] = 0
	}
	return DocumentStats{ByType: byType}
}

// DocumentID derives the natural key of an uploaded file within a client scope.
func DocumentID(clientID *int64, filename string) string {
	if clientID == nil {
		return filename
	}
	return fmt.Sprintf("client_%d_%s", *clientID, filename)
}

// SourceIDForDocument is the source_id stamped on deadlines mined from a document.
func SourceIDForDocument(documentID string) string {
	return "document:" + documentID
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
