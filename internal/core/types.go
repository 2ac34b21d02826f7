package core

// Metadata describes the document being mapped. It is converted into a
// script record with the fields id, cas, expiration, flags, nru, byseqno,
// revseqno and locktime before every invocation.
type Metadata struct {
	ID         string `json:"id"`
	Cas        uint64 `json:"cas"`
	Expiration uint32 `json:"expiration"`
	Flags      uint32 `json:"flags"`
	Nru        int32  `json:"nru"`
	BySeqno    uint64 `json:"byseqno"`
	RevSeqno   uint64 `json:"revseqno"`
	LockTime   uint32 `json:"locktime"`
}
