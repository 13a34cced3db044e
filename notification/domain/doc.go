// Package domain define os tipos de notificação, preferências e os contratos
// de persistência, diretório de destinatários e envio de e-mail.
package domain
