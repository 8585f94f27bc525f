// Package eventbus appends lifecycle notifications to the analysis event
// feed. Downstream consumers read the feed; this service only writes one
// row per persisted state change.
package eventbus

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wesman-labs/wesman-go/internal/domain"
	"github.com/wesman-labs/wesman-go/internal/platform/env"
	"github.com/wesman-labs/wesman-go/internal/wire"
)

// DetailTypeAnalysisStateChange tags every analysis lifecycle notification.
const DetailTypeAnalysisStateChange = "ICAv2WesAnalysisStateChange"

type Config struct {
	Source string
}

func ConfigFromEnv() (Config, error) {
	cfg := Config{
		Source: env.String("WESMAN_EVENT_SOURCE", "orcabus.icav2wesmanager"),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Source) == "" {
		return errors.New("WESMAN_EVENT_SOURCE is required")
	}
	return nil
}

type QueryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Publisher writes state-change events. Emission is best-effort
// at-least-once: a failed insert surfaces to the caller and is not retried
// here.
type Publisher struct {
	db     QueryRower
	source string
}

func NewPublisher(db QueryRower, cfg Config) (*Publisher, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Publisher{db: db, source: strings.TrimSpace(cfg.Source)}, nil
}

// PublishStateChange appends one event carrying the full current record.
func (p *Publisher) PublishStateChange(ctx context.Context, analysis domain.Analysis) error {
	_, err := p.publish(ctx, DetailTypeAnalysisStateChange, wire.FromDomain(analysis))
	return err
}

func (p *Publisher) publish(ctx context.Context, detailType string, detail any) (int64, error) {
	if p == nil || p.db == nil {
		return 0, errors.New("publisher not initialized")
	}
	detailJSON, err := json.Marshal(detail)
	if err != nil {
		return 0, fmt.Errorf("marshal detail: %w", err)
	}

	emittedAt := time.Now().UTC()
	integrity, err := computeIntegritySHA256(emittedAt, p.source, detailType, detailJSON)
	if err != nil {
		return 0, err
	}

	var id int64
	err = p.db.QueryRowContext(
		ctx,
		`INSERT INTO analysis_events (
			emitted_at,
			source,
			detail_type,
			detail,
			integrity_sha256
		) VALUES ($1,$2,$3,$4,$5)
		RETURNING event_id`,
		emittedAt,
		p.source,
		detailType,
		detailJSON,
		integrity,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert analysis event: %w", err)
	}
	return id, nil
}

func computeIntegritySHA256(emittedAt time.Time, source, detailType string, detailJSON []byte) (string, error) {
	type integrityInput struct {
		EmittedAt  time.Time       `json:"emitted_at"`
		Source     string          `json:"source"`
		DetailType string          `json:"detail_type"`
		Detail     json.RawMessage `json:"detail"`
	}
	blob, err := json.Marshal(integrityInput{
		EmittedAt:  emittedAt.UTC(),
		Source:     source,
		DetailType: detailType,
		Detail:     detailJSON,
	})
	if err != nil {
		return "", fmt.Errorf("marshal integrity: %w", err)
	}
	sum := sha256.Sum256(blob)
	return hex.EncodeToString(sum[:]), nil
}
