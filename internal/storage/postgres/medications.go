package postgres

import (
	"context"
	"fmt"

	"github.com/hongminglow/medimate-be/internal/models"
)

const (
	listMedicationsQuery = `SELECT id, user_id, drug_name, dosage, frequency, active, created_at
	FROM medications WHERE user_id = $1 ORDER BY created_at`

	deleteMedicationsQuery = `DELETE FROM medications WHERE user_id = $1`
)

func (s *Store) ListByUser(ctx context.Context, userID string) ([]models.Medication, error) {
	rows, err := s.db.QueryContext(ctx, listMedicationsQuery, userID)
	if err != nil {
		return nil, fmt.Errorf("list medications: %w", err)
	}
	defer rows.Close()

	meds := make([]models.Medication, 0)
	for rows.Next() {
		var m models.Medication
		if err := rows.Scan(&m.ID, &m.UserID, &m.DrugName, &m.Dosage, &m.Frequency, &m.Active, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan medication: %w", err)
		}
		meds = append(meds, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list medications: %w", err)
	}
	return meds, nil
}

// DeleteByUser removes every medication owned by userID. Running it again is a no-op.
func (s *Store) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, deleteMedicationsQuery, userID)
	if err != nil {
		return 0, fmt.Errorf("delete medications: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete medications: %w", err)
	}
	return n, nil
}
