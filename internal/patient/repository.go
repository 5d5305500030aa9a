package patient

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/docbox-health/docbox/internal/shared/database"
)

// Repository mirrors patient snapshots to PostgreSQL. Writes are
// version-gated at the database so late-arriving snapshots from the
// fire-and-forget sync path never overwrite newer rows.
type Repository struct {
	db *database.DB
}

// NewRepository creates a repository backed by the given database
func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db}
}

// SyncPatient upserts a patient snapshot. A row with an equal or higher
// version is left untouched.
func (r *Repository) SyncPatient(ctx context.Context, p Patient) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	payload, err := json.Marshal(p)
	if err != nil {
		log.Printf("patient sync: marshal %s failed: %v", p.PID, err)
		return
	}

	query := `
		INSERT INTO patients (pid, name, status, color, bed_number, esi_score, is_simulated, version, payload, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (pid) DO UPDATE SET
			name = EXCLUDED.name,
			status = EXCLUDED.status,
			color = EXCLUDED.color,
			bed_number = EXCLUDED.bed_number,
			esi_score = EXCLUDED.esi_score,
			is_simulated = EXCLUDED.is_simulated,
			version = EXCLUDED.version,
			payload = EXCLUDED.payload,
			updated_at = NOW()
		WHERE EXCLUDED.version > patients.version`

	_, err = r.db.Pool.Exec(ctx, query,
		p.PID, p.Name, string(p.Status), string(p.Color),
		p.BedNumber, p.ESIScore, p.IsSimulated, p.Version, payload)
	if err != nil {
		log.Printf("patient sync: upsert %s failed: %v", p.PID, err)
	}
}

// DeletePatient removes a patient row
func (r *Repository) DeletePatient(ctx context.Context, pid string) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := r.db.Pool.Exec(ctx, `DELETE FROM patients WHERE pid = $1`, pid); err != nil {
		log.Printf("patient sync: delete %s failed: %v", pid, err)
	}
}
