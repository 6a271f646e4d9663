package models

// UploadRequest carries the uploaded file through the pipeline. It lives for
// a single request; nothing is persisted.
type UploadRequest struct {
	File        []byte
	Filename    string
	ContentType string
}

// ContractAnalysis is the parsed output of one provider call.
type ContractAnalysis struct {
	SimplifiedContract string
	Cons               []string
}

// AnalysisResult is the response body for a successful analysis.
// OriginalFilename round-trips the uploaded filename verbatim and Cons keeps
// the order the clauses were emitted in.
type AnalysisResult struct {
	OriginalFilename   string   `json:"original_filename"`
	SimplifiedContract string   `json:"simplified_contract"`
	Cons               []string `json:"cons"`
}
