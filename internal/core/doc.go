// Package core implements the local app lock: the PIN credential and lock
// settings stores, the administrative Wizard (setup, change, disable) and
// the unlock Gate with its attempt counter and cooldown.
//
// Both controllers are driven by Transition, which applies one Input and
// returns a state snapshot plus an Event when the flow ends. Hosts render
// the snapshot and react to events; nothing in this package touches a
// terminal or a UI toolkit.
package core
