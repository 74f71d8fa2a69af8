// Package mural fornece o adapter websocket do canvas de pixels.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do canvas (sem dependência de transporte)
//   - application: casos de uso (escrita, admissão, uploads, desenho, snapshot)
//   - infra: implementações concretas (memória, Redis, Postgres)
//   - mural (este pacote): protocolo JSON sobre websocket + hub de conexões +
//     extração de chave de origem + tradução de erro para código de protocolo
//
// Fluxo de uma escrita:
//
//  1. Extrai a chave de origem do cliente (IP/XFF)
//  2. Chama a camada application: valida, admite, grava atômico, publica
//  3. Ecoa o pixel aceito para o autor e repassa o pixel_update do fanout
//     para todas as conexões (inclusive a origem)
//
// Variáveis de ambiente do binário muralserver (cmd/muralserver) controlam o
// comportamento, como CANVAS_WIDTH, PIXEL_RATE_LIMIT e SNAPSHOT_EVERY.
package mural
