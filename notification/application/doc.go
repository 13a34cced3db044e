// Package application contém os casos de uso de notificação: resolução de
// preferência, criação com gating, transições de leitura, remoção e listagem.
//
// Ele depende apenas do pacote domain; persistência e e-mail entram por interface.
package application
