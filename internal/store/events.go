package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/urbanharvest/hub/internal/database"
	"github.com/urbanharvest/hub/internal/models"
)

// EventFilter mirrors ProductFilter for the events listing; Sort
// accepts date_asc or date_desc.
type EventFilter struct {
	Search   string
	Category string
	Sort     string
}

type EventInput struct {
	Title       string
	Description string
	Date        time.Time
	Location    string
	Category    string
	ImageURL    string
}

type RegistrationInput struct {
	UserID        int64
	EventID       int64
	FullName      string
	Email         string
	ContactNumber string
}

const eventColumns = "id, title, description, date, location, category, image_url, created_at"

func scanEvent(row interface{ Scan(...any) error }) (*models.Event, error) {
	event := &models.Event{}
	err := row.Scan(
		&event.ID,
		&event.Title,
		&event.Description,
		&event.Date,
		&event.Location,
		&event.Category,
		&event.ImageURL,
		&event.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return event, nil
}

func ListEvents(ctx context.Context, db *sql.DB, filter EventFilter) ([]models.Event, error) {
	var (
		conditions []string
		args       []any
	)

	query := "SELECT " + eventColumns + " FROM events"

	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		placeholder := fmt.Sprintf("$%d", len(args))
		conditions = append(conditions,
			fmt.Sprintf("(title ILIKE %s OR location ILIKE %s)", placeholder, placeholder))
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)))
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	switch filter.Sort {
	case "date_asc":
		query += " ORDER BY date ASC"
	case "date_desc":
		query += " ORDER BY date DESC"
	default:
		query += " ORDER BY created_at DESC"
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, *event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return events, nil
}

func GetEvent(ctx context.Context, db *sql.DB, id int64) (*models.Event, error) {
	query := "SELECT " + eventColumns + " FROM events WHERE id = $1"

	event, err := scanEvent(db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrEventNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}

	return event, nil
}

func CreateEvent(ctx context.Context, db *sql.DB, input EventInput) (*models.Event, error) {
	query := `
		INSERT INTO events (title, description, date, location, category, image_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING ` + eventColumns

	event, err := scanEvent(db.QueryRowContext(ctx, query,
		input.Title, input.Description, input.Date, input.Location, input.Category, input.ImageURL))
	if err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}

	return event, nil
}

func UpdateEvent(ctx context.Context, db *sql.DB, id int64, input EventInput) error {
	result, err := db.ExecContext(ctx,
		`UPDATE events
		 SET title = $1, description = $2, date = $3, location = $4, category = $5, image_url = $6
		 WHERE id = $7`,
		input.Title, input.Description, input.Date, input.Location, input.Category, input.ImageURL, id)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return database.ErrEventNotFound
	}

	return nil
}

func DeleteEvent(ctx context.Context, db *sql.DB, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return database.ErrEventNotFound
	}

	return nil
}

// RegisterForEvent records a user's attendance; at most one
// registration per (user, event), enforced both by the pre-check and
// by the unique constraint underneath.
func RegisterForEvent(ctx context.Context, db *sql.DB, input RegistrationInput) (*models.Registration, error) {
	var exists bool
	err := db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM events WHERE id = $1)",
		input.EventID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("check event exists: %w", err)
	}
	if !exists {
		return nil, database.ErrEventNotFound
	}

	registration := &models.Registration{
		UserID:        input.UserID,
		EventID:       input.EventID,
		FullName:      input.FullName,
		Email:         input.Email,
		ContactNumber: input.ContactNumber,
	}

	err = db.QueryRowContext(ctx,
		`INSERT INTO registrations (user_id, event_id, full_name, email, contact_number, registered_at)
		 VALUES ($1, $2, $3, $4, $5, NOW())
		 RETURNING id, registered_at`,
		input.UserID, input.EventID, input.FullName, input.Email, input.ContactNumber,
	).Scan(&registration.ID, &registration.RegisteredAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, database.ErrAlreadyRegistered
		}
		return nil, fmt.Errorf("create registration: %w", err)
	}

	return registration, nil
}
