package database

import (
	"context"
	"database/sql"
	"fmt"

	"rezervacia/internal/models"
)

// SeedCatalog upserts services and staff and deactivates rows that are no
// longer present in the seed.
func (db *DB) SeedCatalog(ctx context.Context, services []models.Service, staff []models.StaffMember) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `UPDATE services SET is_active = 0`); err != nil {
		return fmt.Errorf("failed to reset services: %w", err)
	}
	for i, s := range services {
		var discounted sql.NullFloat64
		if s.DiscountedPrice != nil {
			discounted = sql.NullFloat64{Float64: *s.DiscountedPrice, Valid: true}
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO services (id, name, category, description, duration, price, discounted_price, image_url, sort_order, is_active)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				category = excluded.category,
				description = excluded.description,
				duration = excluded.duration,
				price = excluded.price,
				discounted_price = excluded.discounted_price,
				image_url = excluded.image_url,
				sort_order = excluded.sort_order,
				is_active = 1`,
			s.ID, s.Name, s.Category, s.Description, s.Duration, s.Price, discounted, s.ImageURL, i,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert service %s: %w", s.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `UPDATE staff SET is_active = 0`); err != nil {
		return fmt.Errorf("failed to reset staff: %w", err)
	}
	for i, m := range staff {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO staff (id, name, position, image_url, sort_order, is_active)
			VALUES (?, ?, ?, ?, ?, 1)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				position = excluded.position,
				image_url = excluded.image_url,
				sort_order = excluded.sort_order,
				is_active = 1`,
			m.ID, m.Name, m.Position, m.ImageURL, i,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert staff %s: %w", m.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit catalog: %w", err)
	}

	db.logger.Info().Int("services", len(services)).Int("staff", len(staff)).Msg("catalog seeded")
	return nil
}

func (db *DB) ListServices(ctx context.Context) ([]models.Service, error) {
	query, args, err := db.builder.
		Select("id", "name", "category", "description", "duration", "price", "discounted_price", "image_url").
		From("services").
		Where("is_active = 1").
		OrderBy("sort_order", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build services query: %w", err)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}
	defer rows.Close()

	services := make([]models.Service, 0)
	for rows.Next() {
		var (
			s          models.Service
			discounted sql.NullFloat64
		)
		if err := rows.Scan(&s.ID, &s.Name, &s.Category, &s.Description, &s.Duration, &s.Price, &discounted, &s.ImageURL); err != nil {
			return nil, fmt.Errorf("failed to scan service: %w", err)
		}
		if discounted.Valid {
			v := discounted.Float64
			s.DiscountedPrice = &v
		}
		services = append(services, s)
	}
	return services, rows.Err()
}

func (db *DB) ListStaff(ctx context.Context) ([]models.StaffMember, error) {
	query, args, err := db.builder.
		Select("id", "name", "position", "image_url").
		From("staff").
		Where("is_active = 1").
		OrderBy("sort_order", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build staff query: %w", err)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list staff: %w", err)
	}
	defer rows.Close()

	staff := make([]models.StaffMember, 0)
	for rows.Next() {
		var m models.StaffMember
		if err := rows.Scan(&m.ID, &m.Name, &m.Position, &m.ImageURL); err != nil {
			return nil, fmt.Errorf("failed to scan staff member: %w", err)
		}
		staff = append(staff, m)
	}
	return staff, rows.Err()
}
