package domain

import "time"

// Taxonomia de erros do núcleo. Nenhum deles é fatal para o processo:
// todos são escopados à requisição ou conexão que os originou.
// A camada de adaptação (websocket) traduz o tipo para um código de
// protocolo antes de responder.

// ValidationError: entrada rejeitada de forma síncrona (coordenada fora do
// canvas, cor malformada, envelope de chunk inválido). Nunca é retentado.
type ValidationError struct {
	Msg string
}

func (e ValidationError) Error() string { return e.Msg }

// RateLimitError: admissão negada; o cliente deve tentar de novo depois.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e RateLimitError) Error() string { return "rate limited" }

// ConflictError: a identidade já tem um job de desenho ativo, ou a sessão de
// upload pertence a outra identidade.
type ConflictError struct {
	Msg string
}

func (e ConflictError) Error() string { return e.Msg }

// StorageError: falha na operação atômica de leitura/escrita do store.
// Reportado ao cliente como erro genérico de servidor.
type StorageError struct {
	Op  string
	Err error
}

func (e StorageError) Error() string { return "storage: " + e.Op + ": " + e.Err.Error() }
func (e StorageError) Unwrap() error { return e.Err }

// ProtocolError: mensagem desconhecida ou payload que não parseia.
// Reportado e ignorado; a conexão não é fechada.
type ProtocolError struct {
	Msg string
}

func (e ProtocolError) Error() string { return e.Msg }
