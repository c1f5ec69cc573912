package postgres

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/example/sirius-meet/internal/persistence"
)

const employeeColumns = `national_id, given_names, family_names, full_name, role, organization, is_active, last_login, created_at, updated_at`

// CreateEmployee inserts a new employee.
func (s *Store) CreateEmployee(ctx context.Context, employee persistence.Employee) error {
	if strings.TrimSpace(employee.NationalID) == "" {
		return persistence.ErrConstraintViolation
	}
	createdAt := nowIfZero(employee.CreatedAt)
	updatedAt := createdAt
	if !employee.UpdatedAt.IsZero() {
		updatedAt = employee.UpdatedAt.UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO employees (`+employeeColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		strings.TrimSpace(employee.NationalID),
		employee.GivenNames,
		employee.FamilyNames,
		employee.FullName,
		employee.Role,
		employee.Organization,
		employee.IsActive,
		nullTime(employee.LastLogin),
		createdAt,
		updatedAt,
	)
	return mapError(err)
}

// GetEmployee retrieves an employee by national ID.
func (s *Store) GetEmployee(ctx context.Context, nationalID string) (persistence.Employee, error) {
	nationalID = strings.TrimSpace(nationalID)
	if nationalID == "" {
		return persistence.Employee{}, persistence.ErrNotFound
	}
	employee, err := scanEmployee(s.db.QueryRowContext(ctx, `SELECT `+employeeColumns+` FROM employees WHERE national_id = $1`, nationalID))
	if err != nil {
		return persistence.Employee{}, mapError(err)
	}
	return employee, nil
}

// ListActiveEmployees returns active employees ordered by family names.
func (s *Store) ListActiveEmployees(ctx context.Context) ([]persistence.Employee, error) {
	return s.queryEmployees(ctx, `
		SELECT `+employeeColumns+`
		FROM employees
		WHERE is_active
		ORDER BY family_names ASC, given_names ASC, national_id ASC
	`)
}

// SearchEmployees matches the query as a case-insensitive substring of the
// national ID or any name column among active employees.
func (s *Store) SearchEmployees(ctx context.Context, query string, limit int) ([]persistence.Employee, error) {
	pattern := "%" + escapeLike(strings.ToLower(strings.TrimSpace(query))) + "%"
	return s.queryEmployees(ctx, `
		SELECT `+employeeColumns+`
		FROM employees
		WHERE is_active
		  AND (lower(national_id) LIKE $1 ESCAPE '\'
		    OR lower(given_names) LIKE $1 ESCAPE '\'
		    OR lower(family_names) LIKE $1 ESCAPE '\'
		    OR lower(full_name) LIKE $1 ESCAPE '\')
		ORDER BY family_names ASC, given_names ASC, national_id ASC
		LIMIT $2
	`, pattern, nullLimit(limit))
}

// TouchLastLogin records a successful login.
func (s *Store) TouchLastLogin(ctx context.Context, nationalID string, at time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE employees SET last_login = $1, updated_at = $1 WHERE national_id = $2
	`, at.UTC(), strings.TrimSpace(nationalID))
	if err != nil {
		return mapError(err)
	}
	affected, err := rowsAffected(result)
	if err != nil {
		return err
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

func (s *Store) queryEmployees(ctx context.Context, query string, args ...any) ([]persistence.Employee, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	employees := make([]persistence.Employee, 0)
	for rows.Next() {
		employee, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		employees = append(employees, employee)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return employees, nil
}

func scanEmployee(row rowScanner) (persistence.Employee, error) {
	var (
		employee  persistence.Employee
		lastLogin sql.NullTime
	)
	if err := row.Scan(
		&employee.NationalID,
		&employee.GivenNames,
		&employee.FamilyNames,
		&employee.FullName,
		&employee.Role,
		&employee.Organization,
		&employee.IsActive,
		&lastLogin,
		&employee.CreatedAt,
		&employee.UpdatedAt,
	); err != nil {
		return persistence.Employee{}, err
	}
	employee.LastLogin = timePtr(lastLogin)
	employee.CreatedAt = employee.CreatedAt.UTC()
	employee.UpdatedAt = employee.UpdatedAt.UTC()
	return employee, nil
}

func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}
