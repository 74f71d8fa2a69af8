// Package domain define contratos e tipos de domínio do mural de pixels.
//
// Este pacote não depende de websocket, Redis ou Postgres.
// A intenção é permitir testes de unidade puros e desacoplar as regras do
// canvas (geometria, cores, admissão, fanout) de detalhes de infraestrutura.
package domain
