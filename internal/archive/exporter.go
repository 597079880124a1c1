// Package archive periodically exports appointments as CSV to object storage.
package archive

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"threpsi/internal/service"
	"threpsi/internal/storage"
)

const (
	keyTimeLayout = "20060102T150405Z"
	filePrefix    = "appointments-"
)

var csvHeader = []string{"id", "name", "email", "department", "date", "time", "created_at"}

type Config struct {
	Bucket    string
	KeyPrefix string
	Interval  time.Duration
	// Keep is the number of most recent archives retained; 0 keeps everything.
	Keep   int
	Logger *logrus.Logger
}

type Exporter struct {
	cfg          Config
	appointments service.AppointmentService
	storage      storage.Service
	now          func() time.Time
}

func NewExporter(cfg Config, appointments service.AppointmentService, store storage.Service) *Exporter {
	if cfg.Interval <= 0 {
		cfg.Interval = 24 * time.Hour
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	cfg.KeyPrefix = strings.Trim(cfg.KeyPrefix, "/")
	return &Exporter{
		cfg:          cfg,
		appointments: appointments,
		storage:      store,
		now:          time.Now,
	}
}

// Run exports once immediately and then on every interval until ctx is done.
// A failed export is logged and retried on the next tick.
func (e *Exporter) Run(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	for {
		if location, err := e.Export(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			e.cfg.Logger.WithError(err).Warn("appointment archive failed")
		} else {
			e.cfg.Logger.Infof("appointments archived to %s", location)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Export uploads a CSV snapshot of all appointments and prunes old archives.
func (e *Exporter) Export(ctx context.Context) (string, error) {
	appts, err := e.appointments.List(ctx)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return "", fmt.Errorf("write csv header: %w", err)
	}
	for _, a := range appts {
		record := []string{
			strconv.FormatInt(a.ID, 10),
			a.Name,
			a.Email,
			a.Department,
			a.Date,
			a.Time,
			a.CreatedAt.UTC().Format(time.RFC3339Nano),
		}
		if err := w.Write(record); err != nil {
			return "", fmt.Errorf("write csv record %d: %w", a.ID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush csv: %w", err)
	}

	location, err := e.storage.Upload(ctx, e.cfg.Bucket, e.objectKey(), &buf, "text/csv")
	if err != nil {
		return "", err
	}

	if err := e.prune(ctx); err != nil {
		e.cfg.Logger.WithError(err).Warn("prune appointment archives")
	}
	return location, nil
}

func (e *Exporter) objectKey() string {
	name := fmt.Sprintf("%s%s-%s.csv", filePrefix, e.now().UTC().Format(keyTimeLayout), uuid.NewString()[:8])
	if e.cfg.KeyPrefix == "" {
		return name
	}
	return e.cfg.KeyPrefix + "/" + name
}

func (e *Exporter) prune(ctx context.Context) error {
	if e.cfg.Keep <= 0 {
		return nil
	}

	prefix := filePrefix
	if e.cfg.KeyPrefix != "" {
		prefix = e.cfg.KeyPrefix + "/" + filePrefix
	}
	objects, err := e.storage.ListObjects(ctx, e.cfg.Bucket, prefix)
	if err != nil {
		return err
	}
	if len(objects) <= e.cfg.Keep {
		return nil
	}

	keys := make([]string, len(objects))
	for i, obj := range objects {
		keys[i] = obj.Key
	}
	// keys embed a sortable UTC timestamp
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))

	stale := keys[e.cfg.Keep:]
	if err := e.storage.Delete(ctx, e.cfg.Bucket, stale); err != nil {
		return err
	}
	e.cfg.Logger.Debugf("pruned %d appointment archives", len(stale))
	return nil
}
