package domain

// Pixel é um registro normalizado de um pixel de imagem em massa:
// deslocamento relativo à âncora (startX, startY) e cor já validada.
//
// O protocolo aceita o registro em duas formas (objeto ou array); a
// normalização acontece na borda e o núcleo só enxerga este tipo.
type Pixel struct {
	DX    int
	DY    int
	Color Color
}

// Update é uma mutação aceita pelo store, publicada no fanout para todos os
// clientes conectados (inclusive a origem, que confirma a própria escrita).
//
// Timestamp em milissegundos unix; Origin é a identidade opaca da conexão.
type Update struct {
	X         int    `json:"x"`
	Y         int    `json:"y"`
	Color     Color  `json:"color"`
	Timestamp int64  `json:"timestamp"`
	Origin    string `json:"origin"`
}
