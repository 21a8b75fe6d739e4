package rpc

// RPCCallMessage is the header of every RPC request sent to a server.
//
// Reference: RFC 5531 Section 9.
type RPCCallMessage struct {
	XID        uint32
	MsgType    uint32
	RPCVersion uint32
	Program    uint32
	Version    uint32
	Procedure  uint32
	Cred       OpaqueAuth
	Verf       OpaqueAuth
}

// RPCReplyMessage is the header of every RPC response read from a server.
//
// Fields beyond AcceptStat (low/high version on PROG_MISMATCH, reject
// details on MSG_DENIED) are not modelled as struct fields since the client
// only needs to branch on ReplyState/AcceptStat and surface an error; the
// raw trailing bytes remain available to the caller if needed.
type RPCReplyMessage struct {
	XID        uint32
	MsgType    uint32
	ReplyState uint32
	Verf       OpaqueAuth
	AcceptStat uint32
}

// OpaqueAuth carries either a credential or a verifier. The RPC layer never
// interprets Body itself; interpretation is keyed off Flavor.
type OpaqueAuth struct {
	Flavor uint32
	Body   []byte `xdr:"opaque"`
}
