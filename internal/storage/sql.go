package storage

import (
	_ "embed"
)

const (
	insertScopeSQL = `
INSERT INTO scopes (
                    id,
                    name,
                    frequency,
                    amplitude,
                    phase,
                    created_at)
VALUES (?, ?, ?, ?, ?, ?)`

	selectScopeSQL = `
SELECT 
    id, 
    name, 
    frequency, 
    amplitude, 
    phase, 
    created_at 
FROM scopes 
WHERE 
    id = ?`

	selectScopesSQL = `
SELECT 
    id, 
    name, 
    frequency, 
    amplitude, 
    phase, 
    created_at 
FROM scopes
ORDER BY created_at, id`
)

//go:embed schema.sql
var initSchemaSQL string
