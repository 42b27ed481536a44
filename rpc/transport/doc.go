// Package transport provides the network layer behind the session
// contract. The base subpackage implements a framed session over a
// single stream connection; tcp and unix supply the medium-specific
// connectors. Further media only need to implement ISessionConnector.
package transport
