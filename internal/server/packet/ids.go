package packet

// Packet ids.
const (
	IDBlockUpdate     uint32 = 0x15
	IDChunk           uint32 = 0x3A
	IDCacheBlobStatus uint32 = 0x87
	IDCacheBlobs      uint32 = 0x88
	IDChunkRadius     uint32 = 0x46
	IDChunkPublisher  uint32 = 0x79
)
