package domain

// DeletionSummary reports per-category removals of a cascading delete. A failed
// step keeps its category at zero and is listed in StepErrors.
type DeletionSummary struct {
	DocumentsDeleted           int64             `json:"documents_deleted"`
	DeadlinesDeleted           int64             `json:"deadlines_deleted"`
	ValidationsDeleted         int64             `json:"validations_deleted"`
	ExtractionsDeleted         int64             `json:"extractions_deleted"`
	DeadlineExtractionsDeleted int64             `json:"deadline_extractions_deleted"`
	FilesDeleted               int64             `json:"files_deleted"`
	StepErrors                 map[string]string `json:"step_errors,omitempty"`
}

func (s *DeletionSummary) Fail(step string, err error) {
	if err == nil {
		return
	}
	if s.StepErrors == nil {
		s.StepErrors = make(map[string]string)
	}
	s.StepErrors[step] = err.Error()
}
