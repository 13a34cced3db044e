// Package api expõe o caminho de escrita (comentários, contato, status de
// relato) e a caixa de notificações via HTTP, com gorilla/mux.
//
// Só POST /comments e POST /contact passam pelo rate limit.
package api
