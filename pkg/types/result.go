package types

// TrainingSample is a prompt/completion pair cut from one file at a token boundary
type TrainingSample struct {
	Prompt           string `json:"prompt"`
	Completion       string `json:"completion"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	Tokenizer        string `json:"tokenizer"`
}

// TotalTokens returns the token count of the file the sample was cut from
func (s *TrainingSample) TotalTokens() int {
	return s.PromptTokens + s.CompletionTokens
}

// Validate checks the token accounting of the sample
func (s *TrainingSample) Validate() error {
	if s.PromptTokens < 1 {
		return ErrEmptyPrompt
	}
	if s.CompletionTokens < 0 {
		return ErrNegativeTokens
	}
	if s.Tokenizer == "" {
		return ErrMissingTokenizer
	}
	return nil
}
