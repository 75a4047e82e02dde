package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"smartinfra-data/internal/domain"

	"github.com/lib/pq"
)

// mapError 把驱动层错误映射为领域错误。
// 23505 unique_violation / 23503 foreign_key_violation → ErrConstraintViolation
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505", "23503":
			return fmt.Errorf("%w: %s", domain.ErrConstraintViolation, pqErr.Constraint)
		}
	}
	return err
}

// joinAnd 拼接 WHERE 条件
func joinAnd(conds []string) string {
	return strings.Join(conds, " AND ")
}

// joinComma 拼接 SET 子句
func joinComma(parts []string) string {
	return strings.Join(parts, ", ")
}

// nullableJSON JSONB 列参数：空值写 NULL 而不是空串
func nullableJSON(raw []byte) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
