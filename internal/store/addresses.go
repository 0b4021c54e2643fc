package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/umarov/storefront/internal/database"
	"github.com/umarov/storefront/internal/models"
)

func CreateAddress(ctx context.Context, db *sql.DB, userID int64, city, street, comment string) (*models.Address, error) {
	address := &models.Address{}

	query := `
		INSERT INTO addresses (user_id, city, street, comment, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING id, user_id, city, street, comment, created_at`

	err := db.QueryRowContext(ctx, query, userID, city, street, comment).Scan(
		&address.ID,
		&address.UserID,
		&address.City,
		&address.Street,
		&address.Comment,
		&address.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create address: %w", err)
	}

	return address, nil
}

func GetAddress(ctx context.Context, db *sql.DB, id int64) (*models.Address, error) {
	address := &models.Address{}

	query := `
		SELECT id, user_id, city, street, comment, created_at
		FROM addresses
		WHERE id = $1`

	err := db.QueryRowContext(ctx, query, id).Scan(
		&address.ID,
		&address.UserID,
		&address.City,
		&address.Street,
		&address.Comment,
		&address.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrAddressNotFound
		}
		return nil, fmt.Errorf("get address: %w", err)
	}

	return address, nil
}

func ListAddresses(ctx context.Context, db *sql.DB, userID int64) ([]models.Address, error) {
	query := `
		SELECT id, user_id, city, street, comment, created_at
		FROM addresses
		WHERE user_id = $1
		ORDER BY created_at DESC`

	rows, err := db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list addresses: %w", err)
	}
	defer rows.Close()

	var addresses []models.Address
	for rows.Next() {
		var address models.Address
		err := rows.Scan(
			&address.ID,
			&address.UserID,
			&address.City,
			&address.Street,
			&address.Comment,
			&address.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan address: %w", err)
		}
		addresses = append(addresses, address)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return addresses, nil
}
