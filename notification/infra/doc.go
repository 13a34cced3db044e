// Package infra contém as implementações concretas dos contratos de notificação.
//
//   - SQLiteStore: sqlx + modernc.org/sqlite, migrations versionadas
//   - MemoryStore: mapas em memória (testes / STORE_DRIVER=memory)
//   - SMTPMailer: go-message para montar, go-smtp para enviar, x/time/rate para throttle
//   - LogMailer: só log, quando não há SMTP
package infra
