package domain

// InitializeParams are the inputs of the program's initialize instruction
type InitializeParams struct {
	Question  Address
	Stats     Address
	Owner     Address
	Content   string
	Threshold uint32
}

// AnswerParams are the inputs of the program's submit_answer instruction
type AnswerParams struct {
	Question Address
	Stats    Address
	Answerer Address
	Value    float64
}
