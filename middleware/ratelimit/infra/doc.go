// Package infra implementa os contratos de domain.
//
//   - WindowStore: contador de janela fixa em memória (shards por xxhash),
//     com varredura em goroutine própria controlada por Start/Stop
//   - MemoryStatsStore: estatísticas no processo
//   - RedisStatsStore: estatísticas em hashes do Redis, compartilhadas entre réplicas
package infra
