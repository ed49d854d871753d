package ops

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/vinyasa/internal/compose"
	"github.com/hpungsan/vinyasa/internal/config"
	"github.com/hpungsan/vinyasa/internal/db"
	"github.com/hpungsan/vinyasa/internal/errors"
	"github.com/hpungsan/vinyasa/internal/logging"
	"github.com/hpungsan/vinyasa/internal/oracle"
	"github.com/hpungsan/vinyasa/internal/pose"
	"github.com/hpungsan/vinyasa/internal/sequence"
	"github.com/hpungsan/vinyasa/internal/snapshot"
)

// Pagination limits
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

// Deps bundles what every operation needs.
type Deps struct {
	DB     *sql.DB
	Config *config.Config
	Oracle oracle.Client
	Logger *slog.Logger
}

func (d *Deps) logger() *slog.Logger {
	return logging.OrDiscard(d.Logger)
}

func (d *Deps) cfg() *config.Config {
	if d.Config == nil {
		return config.DefaultConfig()
	}
	return d.Config
}

func (d *Deps) composer(catalog *pose.Catalog) *compose.Composer {
	cfg := d.cfg()
	return compose.New(d.Oracle, catalog, compose.Options{
		DefaultHold:       cfg.DefaultHold,
		DefaultTransition: cfg.DefaultTransition,
		Logger:            d.Logger,
	})
}

// generateULID generates a new ULID.
func generateULID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// session is a stored sequence loaded for editing. version is what the
// edit started from; the write is rejected if the store has moved on.
type session struct {
	row        *db.SequenceRow
	plan       sequence.Plan
	peak       []pose.ID
	features   []string
	focusAreas []string
	difficulty pose.Difficulty
	catalog    *pose.Catalog
	dropped    []pose.ID
	version    int64
}

// open loads sequence id with its catalog. If expectedVersion is non-zero
// and the stored version differs, the caller is working from a stale view.
func (d *Deps) open(ctx context.Context, id string, expectedVersion int64) (*session, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.NewInvalidRequest("id is required")
	}
	row, err := db.GetSequence(ctx, d.DB, id, false)
	if err != nil {
		return nil, err
	}
	if expectedVersion != 0 && expectedVersion != row.Version {
		return nil, errors.NewConflict(id, expectedVersion, row.Version)
	}
	return d.decode(ctx, row)
}

func (d *Deps) decode(ctx context.Context, row *db.SequenceRow) (*session, error) {
	catalog, err := db.LoadCatalog(ctx, d.DB)
	if err != nil {
		return nil, err
	}
	decoded, err := snapshot.Decode(row.Record, catalog, d.cfg().DefaultHold)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	if len(decoded.Dropped) > 0 {
		d.logger().WarnContext(ctx, "stored sequence references unknown poses",
			"id", row.ID,
			"dropped", decoded.Dropped,
		)
	}
	focus, _, err := snapshot.DecodeStrings("focus_areas", row.FocusAreas)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return &session{
		row:        row,
		plan:       decoded.Plan,
		peak:       decoded.PeakPoses,
		features:   decoded.EnabledFeatures,
		focusAreas: focus,
		difficulty: pose.Difficulty(row.Difficulty),
		catalog:    catalog,
		dropped:    decoded.Dropped,
		version:    row.Version,
	}, nil
}

// commit writes plan back if nobody else committed since the session was
// opened. A stale result is discarded and reported as CONFLICT.
func (d *Deps) commit(ctx context.Context, s *session, plan sequence.Plan) error {
	rec, err := snapshot.Encode(plan, s.peak, s.features)
	if err != nil {
		return errors.NewInternal(err)
	}
	focusJSON, err := json.Marshal(nonNil(s.focusAreas))
	if err != nil {
		return errors.NewInternal(err)
	}

	row := *s.row
	row.Record = rec
	row.PoseCount = plan.Len()
	row.FocusAreas = string(focusJSON)

	if err := db.UpdateSequence(ctx, d.DB, &row, s.version); err != nil {
		if errors.Is(err, errors.ErrConflict) {
			d.logger().WarnContext(ctx, "stale result discarded",
				"id", row.ID,
				"started_from", s.version,
			)
		}
		return err
	}
	s.row = &row
	s.plan = plan
	s.version = row.Version
	return nil
}

// blockLookup resolves stored flow blocks against the catalog. Poses the
// catalog no longer has are left out of the block.
func (d *Deps) blockLookup(ctx context.Context, catalog *pose.Catalog) (sequence.BlockLookup, error) {
	rows, err := db.ListFlowBlocks(ctx, d.DB)
	if err != nil {
		return nil, err
	}
	blocks := make(map[string]sequence.FlowBlock, len(rows))
	for _, r := range rows {
		blocks[r.ID] = toFlowBlock(r, catalog)
	}
	return func(id string) (sequence.FlowBlock, bool) {
		b, ok := blocks[id]
		return b, ok
	}, nil
}

func toFlowBlock(r db.FlowBlockRow, catalog *pose.Catalog) sequence.FlowBlock {
	poses, kept := catalog.Resolve(r.PoseIDs)
	timing := make([]string, len(kept))
	for j, i := range kept {
		if i < len(r.Timing) {
			timing[j] = r.Timing[i]
		}
	}
	transitions := r.Transitions
	if len(kept) != len(r.PoseIDs) {
		transitions = nil
	}
	return sequence.FlowBlock{
		ID:          r.ID,
		Name:        r.NameRaw,
		Category:    r.Category,
		Poses:       poses,
		Timing:      timing,
		Transitions: transitions,
		Repetitions: r.Repetitions,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// cleanList trims entries and drops blanks.
func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
