/*
Package inmem implements the store DAO interface. This implementation is meant
to help get an instance of vitrine up and running quickly without a need to setup
a dedicated DB or a writable data directory. Cached items are lost on restart.
*/
package inmem
