package training

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gestrec/internal/services/trainer"
)

// metricsRecorder accumulates per-epoch metrics for the run's CSV report.
type metricsRecorder struct {
	epochs []trainer.EpochMetrics
}

func newMetricsRecorder() *metricsRecorder {
	return &metricsRecorder{}
}

func (m *metricsRecorder) record(epoch trainer.EpochMetrics) {
	m.epochs = append(m.epochs, epoch)
}

// writeCSV writes one row per epoch with loss and accuracy columns.
func (m *metricsRecorder) writeCSV(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create metrics file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"epoch", "loss", "accuracy", "val_loss", "val_accuracy"}); err != nil {
		return fmt.Errorf("write metrics header: %w", err)
	}
	for _, epoch := range m.epochs {
		row := []string{
			strconv.Itoa(epoch.Epoch),
			formatMetric(epoch.Loss),
			formatMetric(epoch.Accuracy),
			formatMetric(epoch.ValLoss),
			formatMetric(epoch.ValAccuracy),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write metrics row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush metrics: %w", err)
	}
	return nil
}

func formatMetric(value float64) string {
	return strconv.FormatFloat(value, 'f', 6, 64)
}
