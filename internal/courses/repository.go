package courses

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/learnlive/backend/internal/models"
)

// ErrCourseNotFound is returned when no course matches the lookup.
var ErrCourseNotFound = errors.New("course not found")

// ErrAlreadyEnrolled is returned when a student enrolls twice.
var ErrAlreadyEnrolled = errors.New("already enrolled")

// ErrNotEnrolled is returned when unenrolling without an enrollment.
var ErrNotEnrolled = errors.New("not enrolled")

// Repository persists courses and enrollments.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const courseColumns = `id, title, description, COALESCE(category, ''), mentor_id, created_at, updated_at`

const createCourseSQL = `
INSERT INTO courses (title, description, category, mentor_id)
VALUES ($1, $2, $3, $4)
RETURNING id, created_at, updated_at`

// Create inserts a course.
func (r *Repository) Create(ctx context.Context, course *models.Course) error {
	return r.pool.QueryRow(ctx, createCourseSQL,
		course.Title, course.Description, course.Category, course.MentorID,
	).Scan(&course.ID, &course.CreatedAt, &course.UpdatedAt)
}

// GetByID looks up a course.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Course, error) {
	course := &models.Course{}
	err := r.pool.QueryRow(ctx,
		`SELECT `+courseColumns+` FROM courses WHERE id = $1`, id,
	).Scan(&course.ID, &course.Title, &course.Description, &course.Category,
		&course.MentorID, &course.CreatedAt, &course.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrCourseNotFound
	}
	if err != nil {
		return nil, err
	}
	return course, nil
}

func (r *Repository) list(ctx context.Context, query string, args ...interface{}) ([]models.Course, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Course
	for rows.Next() {
		var course models.Course
		if err := rows.Scan(&course.ID, &course.Title, &course.Description, &course.Category,
			&course.MentorID, &course.CreatedAt, &course.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, course)
	}
	return out, rows.Err()
}

// List returns all courses, optionally filtered by category.
func (r *Repository) List(ctx context.Context, category string) ([]models.Course, error) {
	if category != "" {
		return r.list(ctx,
			`SELECT `+courseColumns+` FROM courses WHERE category = $1 ORDER BY created_at DESC`, category)
	}
	return r.list(ctx, `SELECT `+courseColumns+` FROM courses ORDER BY created_at DESC`)
}

// ListByMentor returns a mentor's courses.
func (r *Repository) ListByMentor(ctx context.Context, mentorID uuid.UUID) ([]models.Course, error) {
	return r.list(ctx,
		`SELECT `+courseColumns+` FROM courses WHERE mentor_id = $1 ORDER BY created_at DESC`, mentorID)
}

const updateCourseSQL = `
UPDATE courses SET
	title = COALESCE($2, title),
	description = COALESCE($3, description),
	category = COALESCE($4, category),
	updated_at = NOW()
WHERE id = $1
RETURNING ` + courseColumns

// Update patches a course; nil fields are left unchanged.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, title, description, category *string) (*models.Course, error) {
	course := &models.Course{}
	err := r.pool.QueryRow(ctx, updateCourseSQL, id, title, description, category).Scan(
		&course.ID, &course.Title, &course.Description, &course.Category,
		&course.MentorID, &course.CreatedAt, &course.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrCourseNotFound
	}
	if err != nil {
		return nil, err
	}
	return course, nil
}

const enrollSQL = `
INSERT INTO enrollments (course_id, student_id)
VALUES ($1, $2)
ON CONFLICT (course_id, student_id) DO NOTHING
RETURNING id, created_at`

// Enroll adds a student to a course.
func (r *Repository) Enroll(ctx context.Context, courseID, studentID uuid.UUID) (*models.Enrollment, error) {
	e := &models.Enrollment{CourseID: courseID, StudentID: studentID}
	err := r.pool.QueryRow(ctx, enrollSQL, courseID, studentID).Scan(&e.ID, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAlreadyEnrolled
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// Unenroll removes a student from a course.
func (r *Repository) Unenroll(ctx context.Context, courseID, studentID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM enrollments WHERE course_id = $1 AND student_id = $2`, courseID, studentID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotEnrolled
	}
	return nil
}

// IsEnrolled reports whether the student is enrolled in the course.
func (r *Repository) IsEnrolled(ctx context.Context, courseID, studentID uuid.UUID) (bool, error) {
	var enrolled bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM enrollments WHERE course_id = $1 AND student_id = $2)`,
		courseID, studentID,
	).Scan(&enrolled)
	return enrolled, err
}

const listEnrolledSQL = `
SELECT ` + courseColumnsPrefixed + `
FROM courses c
JOIN enrollments e ON e.course_id = c.id
WHERE e.student_id = $1
ORDER BY e.created_at DESC`

const courseColumnsPrefixed = `c.id, c.title, c.description, COALESCE(c.category, ''), c.mentor_id, c.created_at, c.updated_at`

// ListEnrolled returns the courses a student is enrolled in.
func (r *Repository) ListEnrolled(ctx context.Context, studentID uuid.UUID) ([]models.Course, error) {
	return r.list(ctx, listEnrolledSQL, studentID)
}

// CountEnrolled returns the number of students in a course.
func (r *Repository) CountEnrolled(ctx context.Context, courseID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM enrollments WHERE course_id = $1`, courseID).Scan(&n)
	return n, err
}
