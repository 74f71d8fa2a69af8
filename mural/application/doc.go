// Package application contém os casos de uso do mural: escrita de pixel,
// leitura de tiles, admissão por janela deslizante, remontagem de uploads em
// chunks, agendamento de desenho em massa e o laço de snapshot.
//
// Ele depende apenas do pacote domain e não conhece websocket nem Redis.
package application
