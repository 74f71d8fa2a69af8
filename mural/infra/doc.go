// Package infra contém implementações concretas (infraestrutura) para os
// contratos definidos no pacote domain.
//
// Exemplos:
//   - MemoryTileStore / RedisTileStore: buffers de tile com escrita atômica
//     (mutex por tile, ou script Lua contra o Redis compartilhado)
//   - MemoryWindowStore / RedisWindowStore: admissão por janela deslizante
//   - MemoryFanout / RedisFanout: distribuição de mutações aceitas
//   - MsgRateStore: token bucket por origem para mensagens de transporte
//   - ChanPool: semáforo simples para limite de jobs simultâneos
//   - PGSnapshotStore: persistência periódica do canvas em Postgres
package infra
