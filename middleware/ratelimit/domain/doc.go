// Package domain tem só tipos e contratos do limiter de janela fixa:
// Key, WindowRecord, Policy, Counter e o lado de estatísticas.
//
// Nada aqui importa net/http ou uma implementação concreta.
package domain
