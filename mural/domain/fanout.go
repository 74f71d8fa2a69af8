package domain

import "context"

// Fanout distribui mutações aceitas para todos os processos cooperantes que
// compartilham o mesmo TileStore. Cada processo (inclusive o que originou a
// escrita) assina o canal e repassa aos seus clientes conectados.
//
// Entrega é at-least-once e sem ordem global entre publicadores
// independentes; a ordem de aceitação do TileStore é a autoridade sobre a
// cor final de cada pixel, então sobrescrever a cada update recebido
// converge corretamente.
type Fanout interface {
	// Publish envia a mutação ao canal compartilhado. Fire-and-forget do
	// ponto de vista do publicador: sem backpressure além do próprio canal.
	Publish(ctx context.Context, u Update) error

	// Subscribe retorna um canal de updates que é fechado quando ctx encerra.
	Subscribe(ctx context.Context) (<-chan Update, error)
}
