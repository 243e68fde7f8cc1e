package knn

import "errors"

var (
	ErrEmptyData         = errors.New("empty feature matrix")
	ErrRaggedData        = errors.New("feature rows have different lengths")
	ErrDimensionMismatch = errors.New("feature dimension does not match training data")
	ErrNonFinite         = errors.New("feature value is not finite")
	ErrLabelMismatch     = errors.New("train_data and train_labels must have the same length")
	ErrInvalidK          = errors.New("invalid k")
	ErrInvalidKRange     = errors.New("invalid k range")
	ErrUnknownMetric     = errors.New("unknown metric")
	ErrUnknownWeighting  = errors.New("unknown weighting")
	ErrNotFitted         = errors.New("model not trained")
	ErrTooFewSamples     = errors.New("too few samples for cross-validation")
)
