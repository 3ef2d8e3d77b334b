package resend

// PartialWrite describes a result submission that reached only some stores.
type PartialWrite struct {
	Division      string
	Match         string
	RowIndex      int
	FirebaseIndex string
	Submission    string
	FirebaseError string
	SheetsError   string
}

// Divergence is one match whose admin fields differ between the stores.
type Divergence struct {
	Division string
	Match    string
	RowIndex int
	Detail   string
}

// DivergenceReport summarizes one reconciliation run.
type DivergenceReport struct {
	Checked     int
	Repaired    int
	Divergences []Divergence
}
