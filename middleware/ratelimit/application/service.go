package application

import (
	"pothole-core/middleware/ratelimit/domain"
)

// Service concentra a regra de admissão do rate limit.
//
// Ele não sabe nada sobre HTTP (headers/status), apenas diz se a chave
// estourou a janela. Sem Counter configurado, tudo passa.
type Service struct {
	Counter domain.Counter
}

// Check retorna true quando a requisição deve ser rejeitada.
func (s Service) Check(key domain.Key) (limited bool) {
	if s.Counter == nil {
		return false
	}
	return s.Counter.Check(key)
}

// Policy retorna a política do counter, se ele expuser uma.
func (s Service) Policy() (domain.Policy, bool) {
	pr, ok := s.Counter.(domain.PolicyReporter)
	if !ok {
		return domain.Policy{}, false
	}
	return pr.Policy(), true
}
