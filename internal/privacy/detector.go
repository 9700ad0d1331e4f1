package privacy

import "context"

// Detector finds candidate PII spans in text.
//
// Implementations return either a Detection or an error wrapping
// ErrDetectorUnavailable or ErrDetectorMalformed. Callers treat both errors
// as "no PII found"; see Tokenizer.
type Detector interface {
	Detect(ctx context.Context, text string) (Detection, error)
}

// DetectorFunc adapts a function to the Detector interface.
type DetectorFunc func(ctx context.Context, text string) (Detection, error)

func (f DetectorFunc) Detect(ctx context.Context, text string) (Detection, error) {
	return f(ctx, text)
}
