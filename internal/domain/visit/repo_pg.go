package visit

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sewaclinic/sewa/internal/platform/auth"
	"github.com/sewaclinic/sewa/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const recordCols = `id, patient_code, department, organization_id,
	name, age, gender, address, contact, ethnicity,
	clinical_status, findings, diagnosis,
	prescriptions, lab_requests, service_requests, rabies,
	prescription_status, version, created_at, updated_at`

func scanRecord(row pgx.Row) (*ServiceRecord, error) {
	var rec ServiceRecord
	err := row.Scan(&rec.ID, &rec.PatientCode, &rec.Department, &rec.OrgID,
		&rec.Name, &rec.Age, &rec.Gender, &rec.Address, &rec.Contact, &rec.Ethnicity,
		&rec.ClinicalStatus, &rec.Findings, &rec.Diagnosis,
		&rec.Prescriptions, &rec.LabRequests, &rec.ServiceRequests, &rec.Rabies,
		&rec.PrescriptionStatus, &rec.Version, &rec.CreatedAt, &rec.UpdatedAt)
	return &rec, err
}

func (r *repoPG) Create(ctx context.Context, rec *ServiceRecord) error {
	rec.ID = uuid.New()
	rec.Version = 1
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO service_records (id, patient_code, department, organization_id,
			name, age, gender, address, contact, ethnicity,
			clinical_status, findings, diagnosis,
			prescriptions, lab_requests, service_requests, rabies,
			prescription_status, version)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`,
		rec.ID, rec.PatientCode, rec.Department, rec.OrgID,
		rec.Name, rec.Age, rec.Gender, rec.Address, rec.Contact, rec.Ethnicity,
		rec.ClinicalStatus, rec.Findings, rec.Diagnosis,
		rec.Prescriptions, rec.LabRequests, rec.ServiceRequests, rec.Rabies,
		rec.PrescriptionStatus, rec.Version)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*ServiceRecord, error) {
	return scanRecord(r.conn(ctx).QueryRow(ctx,
		`SELECT `+recordCols+` FROM service_records WHERE id = $1`, id))
}

func (r *repoPG) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*ServiceRecord, error) {
	return scanRecord(r.conn(ctx).QueryRow(ctx,
		`SELECT `+recordCols+` FROM service_records WHERE id = $1 FOR UPDATE`, id))
}

func (r *repoPG) Update(ctx context.Context, rec *ServiceRecord) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE service_records SET
			name=$3, age=$4, gender=$5, address=$6, contact=$7, ethnicity=$8,
			clinical_status=$9, findings=$10, diagnosis=$11,
			prescriptions=$12, lab_requests=$13, service_requests=$14, rabies=$15,
			prescription_status=$16, version=version+1, updated_at=NOW()
		WHERE id = $1 AND version = $2`,
		rec.ID, rec.Version,
		rec.Name, rec.Age, rec.Gender, rec.Address, rec.Contact, rec.Ethnicity,
		rec.ClinicalStatus, rec.Findings, rec.Diagnosis,
		rec.Prescriptions, rec.LabRequests, rec.ServiceRequests, rec.Rabies,
		rec.PrescriptionStatus)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	rec.Version++
	return nil
}

func (r *repoPG) List(ctx context.Context, orgID, department, status string, limit, offset int) ([]*ServiceRecord, int, error) {
	where := ` WHERE 1=1`
	args := []interface{}{}
	n := 0
	arg := func(v interface{}) string {
		n++
		args = append(args, v)
		return fmt.Sprintf("$%d", n)
	}

	if orgID != auth.ScopeAll {
		where += ` AND organization_id = ` + arg(orgID)
	}
	if department != "" {
		where += ` AND department = ` + arg(department)
	}
	if status != "" {
		where += ` AND clinical_status = ` + arg(status)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM service_records`+where, args...).Scan(&total); err != nil {
		if db.IsUndefinedTable(err) {
			return []*ServiceRecord{}, 0, nil
		}
		return nil, 0, err
	}

	query := `SELECT ` + recordCols + ` FROM service_records` + where +
		` ORDER BY created_at DESC LIMIT ` + arg(limit) + ` OFFSET ` + arg(offset)
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var records []*ServiceRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, rec)
	}
	return records, total, rows.Err()
}

func (r *repoPG) ListByPatientCode(ctx context.Context, orgID, patientCode string) ([]*ServiceRecord, error) {
	query := `SELECT ` + recordCols + ` FROM service_records WHERE patient_code = $1`
	args := []interface{}{patientCode}
	if orgID != auth.ScopeAll {
		query += ` AND organization_id = $2`
		args = append(args, orgID)
	}
	query += ` ORDER BY created_at ASC`

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		if db.IsUndefinedTable(err) {
			return []*ServiceRecord{}, nil
		}
		return nil, err
	}
	defer rows.Close()

	var records []*ServiceRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// IsNotFound reports whether err means the record does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
