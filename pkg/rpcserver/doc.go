/*
Package rpcserver hosts the gRPC listener and standard health service a
fabric node exposes: TLS-optional gRPC server construction and
lifecycle, with no generated domain service, since custom RPC method
definitions sit outside this module's scope.

# See Also

  - pkg/fabric for the node that owns one Server
  - pkg/raft for the leadership signal that flips serving status
*/
package rpcserver
