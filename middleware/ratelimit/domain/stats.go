package domain

import (
	"context"
	"time"
)

// StatsEvent é uma decisão de admissão já tomada.
//
// Route é o nome lógico do endpoint de escrita ("POST /comments").
// Guardar Key por ator multiplica a cardinalidade; só faça com TTL.
type StatsEvent struct {
	Key     Key
	Limited bool
	Route   string
	At      time.Time
}

// StatsStore grava eventos. Erro aqui nunca derruba a request.
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}

type Counters struct {
	Admitted int64 `json:"admitted"`
	Limited  int64 `json:"limited"`
}

func (c *Counters) Add(limited bool) {
	if limited {
		c.Limited++
		return
	}
	c.Admitted++
}

// StatsSnapshot é a visão agregada (total e por rota) para leitura.
type StatsSnapshot struct {
	Total   Counters            `json:"total"`
	ByRoute map[string]Counters `json:"byRoute"`
}

type StatsReader interface {
	Snapshot(ctx context.Context) (StatsSnapshot, error)
}
