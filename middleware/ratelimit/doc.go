// Package ratelimit fornece o adapter HTTP (net/http) do rate limit por janela fixa
// usado nos endpoints de escrita (comentários, formulário de contato).
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: caso de uso (admitido/limitado) sem net/http
//   - infra: WindowStore (janela fixa + varredura), estatísticas em memória/Redis
//   - ratelimit (este pacote): middleware HTTP + extração de chave + tradução para status/headers
//
// Fluxo num endpoint de escrita:
//
//   1) Extrai a chave do ator (usuário, id anônimo, XFF, IP)
//   2) Pergunta ao limiter se a chave estourou a janela
//   3) Se limitado, responde 429 sem chamar o handler
//   4) Se admitido, chama o handler (que grava e depois notifica)
//
// O estado é local ao processo: com N réplicas o limite efetivo é até N vezes maior.
package ratelimit
