package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/example/sirius-meet/internal/persistence"
)

// EmployeeRepository implements persistence.EmployeeRepository using SQLite
type EmployeeRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewEmployeeRepository creates a new SQLite employee repository
func NewEmployeeRepository(pool *ConnectionPool) *EmployeeRepository {
	return &EmployeeRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

const employeeColumns = `national_id, given_names, family_names, full_name, role, organization, is_active, last_login, created_at, updated_at`

// CreateEmployee inserts a new employee.
func (r *EmployeeRepository) CreateEmployee(ctx context.Context, employee persistence.Employee) error {
	if strings.TrimSpace(employee.NationalID) == "" {
		return persistence.ErrConstraintViolation
	}

	createdAt := nowIfZero(employee.CreatedAt)
	updatedAt := employee.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	_, err := r.helper.Exec(ctx, `
		INSERT INTO employees (`+employeeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		strings.TrimSpace(employee.NationalID),
		employee.GivenNames,
		employee.FamilyNames,
		employee.FullName,
		employee.Role,
		employee.Organization,
		employee.IsActive,
		formatTimePtr(employee.LastLogin),
		formatTime(createdAt),
		formatTime(updatedAt),
	)
	return r.mapper.MapError(err)
}

// GetEmployee retrieves an employee by national ID.
func (r *EmployeeRepository) GetEmployee(ctx context.Context, nationalID string) (persistence.Employee, error) {
	nationalID = strings.TrimSpace(nationalID)
	if nationalID == "" {
		return persistence.Employee{}, persistence.ErrNotFound
	}

	row := r.helper.QueryRow(ctx, `SELECT `+employeeColumns+` FROM employees WHERE national_id = ?`, nationalID)
	employee, err := scanEmployee(row)
	if err != nil {
		return persistence.Employee{}, r.mapper.MapError(err)
	}
	return employee, nil
}

// ListActiveEmployees returns active employees ordered by family names.
func (r *EmployeeRepository) ListActiveEmployees(ctx context.Context) ([]persistence.Employee, error) {
	return r.queryEmployees(ctx, `
		SELECT `+employeeColumns+`
		FROM employees
		WHERE is_active = 1
		ORDER BY family_names ASC, given_names ASC, national_id ASC
	`)
}

// SearchEmployees matches the query as a case-insensitive substring of the
// national ID or any name column. Only active employees are returned.
func (r *EmployeeRepository) SearchEmployees(ctx context.Context, query string, limit int) ([]persistence.Employee, error) {
	pattern := "%" + escapeLike(strings.ToLower(strings.TrimSpace(query))) + "%"
	if limit <= 0 {
		limit = -1
	}
	return r.queryEmployees(ctx, `
		SELECT `+employeeColumns+`
		FROM employees
		WHERE is_active = 1
		  AND (lower(national_id) LIKE ? ESCAPE '\'
		    OR lower(given_names) LIKE ? ESCAPE '\'
		    OR lower(family_names) LIKE ? ESCAPE '\'
		    OR lower(full_name) LIKE ? ESCAPE '\')
		ORDER BY family_names ASC, given_names ASC, national_id ASC
		LIMIT ?
	`, pattern, pattern, pattern, pattern, limit)
}

// TouchLastLogin records a successful login.
func (r *EmployeeRepository) TouchLastLogin(ctx context.Context, nationalID string, at time.Time) error {
	result, err := r.helper.Exec(ctx, `
		UPDATE employees SET last_login = ?, updated_at = ? WHERE national_id = ?
	`, formatTime(at), formatTime(at), strings.TrimSpace(nationalID))
	if err != nil {
		return r.mapper.MapError(err)
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

func (r *EmployeeRepository) queryEmployees(ctx context.Context, query string, args ...any) ([]persistence.Employee, error) {
	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
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
		return nil, r.mapper.MapError(err)
	}
	return employees, nil
}

func scanEmployee(row rowScanner) (persistence.Employee, error) {
	var (
		employee             persistence.Employee
		lastLogin            sql.NullString
		createdAt, updatedAt string
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
		&createdAt,
		&updatedAt,
	); err != nil {
		return persistence.Employee{}, err
	}

	var err error
	if employee.LastLogin, err = parseTimePtr(lastLogin); err != nil {
		return persistence.Employee{}, fmt.Errorf("failed to parse last_login: %w", err)
	}
	if employee.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Employee{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if employee.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Employee{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return employee, nil
}

func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}
