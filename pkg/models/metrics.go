package models

// ComplexityIssue flags a function whose cyclomatic score exceeds the
// configured threshold. Branches is the raw branch-construct count, so
// Score == Branches + 1.
type ComplexityIssue struct {
	Function  string `json:"function"`
	File      string `json:"file"`
	Line      int    `json:"line"`
	Score     int    `json:"score"`
	Branches  int    `json:"branches"`
	Threshold int    `json:"threshold"`
}

// UsageSite is one read or write of a tracked global name.
type UsageSite struct {
	File  string `json:"file"`
	Line  int    `json:"line"`
	Write bool   `json:"write,omitempty"`
}

// GlobalUsage aggregates every site touching a module-scope name across the
// tree. It exists in a report only when the sites span at least two files.
type GlobalUsage struct {
	Name    string      `json:"name"`
	Sites   []UsageSite `json:"sites"`
	Files   []string    `json:"files"`
	Writers int         `json:"writers"`
}
