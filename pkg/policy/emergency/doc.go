// Package emergency implements the global kill switch for automated actions.
//
// The interlock has two states, INACTIVE and ACTIVE. While ACTIVE, every
// proposed action is vetoed before any other check runs. Activation carries
// a reason and a trigger identity (an operator, or an external anomaly
// detector); deactivation is manual only and clears that metadata. There is
// no auto-expiry: the interlock stays engaged until someone turns it off.
package emergency
