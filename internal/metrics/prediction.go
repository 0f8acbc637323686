package metrics

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// PredictionError summarizes how a fitted model's predictions compare with
// the actual targets on a held-out set.
type PredictionError struct {
	RMSE      float64
	MAE       float64
	R2        float64
	Actual    []float64
	Predicted []float64
}

// NewPredictionError computes the summary for aligned targets and predictions.
func NewPredictionError(yTrue, yPred []float64) (*PredictionError, error) {
	rmse, err := RMSE(yTrue, yPred)
	if err != nil {
		return nil, err
	}
	mae, err := MAE(yTrue, yPred)
	if err != nil {
		return nil, err
	}
	r2, err := R2(yTrue, yPred)
	if err != nil {
		return nil, err
	}
	return &PredictionError{
		RMSE:      rmse,
		MAE:       mae,
		R2:        r2,
		Actual:    append([]float64(nil), yTrue...),
		Predicted: append([]float64(nil), yPred...),
	}, nil
}

// WriteCSV writes one actual,predicted,residual row per sample.
func (p *PredictionError) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"actual", "predicted", "residual"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, a := range p.Actual {
		pr := p.Predicted[i]
		rec := []string{fmtFloat(a), fmtFloat(pr), fmtFloat(a - pr)}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Summary is a one-line human readable description.
func (p *PredictionError) Summary() string {
	return fmt.Sprintf("n=%d RMSE=%.4g MAE=%.4g R²=%.4f", len(p.Actual), p.RMSE, p.MAE, p.R2)
}

func fmtFloat(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
