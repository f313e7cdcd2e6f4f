package postgres

import (
	"context"
	"database/sql"

	"hiring-pipeline/internal/models"
)

// Directory lists interviewers from the interviewers table.
type Directory struct {
	db *sql.DB
}

func NewDirectory(db *sql.DB) *Directory {
	return &Directory{db: db}
}

func (d *Directory) ListInterviewers(ctx context.Context) ([]models.Interviewer, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT id, full_name, email FROM interviewers ORDER BY full_name, id`)
	if err != nil {
		return nil, queryError(ctx, "interviewers", err)
	}
	defer rows.Close()

	list := []models.Interviewer{}
	for rows.Next() {
		var iv models.Interviewer
		if err := rows.Scan(&iv.ID, &iv.FullName, &iv.Email); err != nil {
			return nil, queryError(ctx, "interviewers scan", err)
		}
		list = append(list, iv)
	}
	if err := rows.Err(); err != nil {
		return nil, queryError(ctx, "interviewers", err)
	}
	return list, nil
}
