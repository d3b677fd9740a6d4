package prompt

// Usage tracks token accounting for a model call. All fields are optional;
// a nil pointer means the provider did not report that figure.
type Usage struct {
	PromptTokens     *int
	CompletionTokens *int
	TotalTokens      *int
	ReasoningTokens  *int
}

// Add combines two Usage values component-wise, null-coercing missing
// figures to zero. Addition is commutative: Add(a, b) == Add(b, a).
func (u Usage) Add(other Usage) Usage {
	return Usage{
		PromptTokens:     addPtr(u.PromptTokens, other.PromptTokens),
		CompletionTokens: addPtr(u.CompletionTokens, other.CompletionTokens),
		TotalTokens:      addPtr(u.TotalTokens, other.TotalTokens),
		ReasoningTokens:  addPtr(u.ReasoningTokens, other.ReasoningTokens),
	}
}

func addPtr(a, b *int) *int {
	if a == nil && b == nil {
		return nil
	}
	sum := deref(a) + deref(b)
	return &sum
}

func deref(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

// IntPtr is a small helper for constructing Usage literals in adapters and
// tests.
func IntPtr(v int) *int { return &v }
