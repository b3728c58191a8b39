// Package ratelimit ограничивает частоту запросов по ключу: не чаще
// одного запроса за окно.
package ratelimit

import "context"

// Store решает, разрешён ли запрос с данным ключом в текущем окне.
type Store interface {
	// Allow возвращает true, если ключ ещё не встречался в текущем окне,
	// и помечает его занятым до конца окна.
	Allow(ctx context.Context, key string) (bool, error)
}
