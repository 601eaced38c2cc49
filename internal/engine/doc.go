// Package engine runs micro-app JavaScript against sandbox membranes
// using goja. One runtime per realm is the host page; each script
// executes with a bridged virtual global shadowing the real one, so
// every global read, write, existence check and deletion the script
// performs resolves through its sandbox's interception traps, while
// language built-ins keep resolving through the shared runtime.
package engine
