package domain

// Camada de domínio do rate limit.
//
// Regras e contratos (interfaces/tipos) sem dependência de net/http.

import "time"

// Key identifica o ator (usuário autenticado, id anônimo ou IP).
type Key string

// WindowRecord é o estado de janela fixa de uma chave.
//
// Invariantes: Count nunca passa de MaxRequests (a checagem rejeita antes),
// e ResetAt só anda para frente.
type WindowRecord struct {
	Key     Key
	Count   int
	ResetAt time.Time
}

// Expired informa se a janela já venceu em `now`.
func (r WindowRecord) Expired(now time.Time) bool {
	return now.After(r.ResetAt)
}

// Policy é o par (interval, maxRequests) fixado na construção.
type Policy struct {
	Interval    time.Duration
	MaxRequests int
}

// Counter decide se uma chave estourou o limite da janela atual.
//
// Check retorna limited=true quando a requisição deve ser rejeitada.
// Não é um erro: quem chama só faz um branch no bool.
type Counter interface {
	Check(Key) (limited bool)
}

// PolicyReporter é implementado por counters que expõem a política
// (usado apenas para headers informativos).
type PolicyReporter interface {
	Policy() Policy
}
