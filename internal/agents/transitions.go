package agents

// Transition is what happens when an activity of a role completes.
type Transition struct {
	Next ActivityKind
	// Carry seeds Next's position from the completed activity's last
	// position. Needed wherever Next has no fixed home to start from.
	Carry bool
	// Divert replaces Next when Next has asked to leave. The diverted
	// activity starts where Next last stood.
	Divert   ActivityKind
	Diverts  bool
	Terminal bool
}

type transitionKey struct {
	role Role
	kind ActivityKind
}

// transitions is read-only and shared by every scheduler.
var transitions = map[transitionKey]Transition{
	{RoleHealthy, KindSleep}:   {Next: KindHealthy},
	{RoleHealthy, KindHealthy}: {Next: KindSleep},

	{RoleInjured, KindSleep}:   {Next: KindInjured},
	{RoleInjured, KindInjured}: {Next: KindSleep},

	{RoleScientist, KindSleep}:       {Next: KindScientific, Divert: KindGoToAirport, Diverts: true},
	{RoleScientist, KindScientific}:  {Next: KindSleep},
	{RoleScientist, KindGoToAirport}: {Terminal: true},

	{RoleGovernment, KindSleep}:     {Next: KindOfficials},
	{RoleGovernment, KindOfficials}: {Next: KindSleep},

	{RoleUN, KindArrival}:   {Next: KindOfficials, Carry: true},
	{RoleUN, KindSleep}:     {Next: KindOfficials},
	{RoleUN, KindOfficials}: {Next: KindSleep},

	{RoleSnR, KindArrival}:         {Next: KindSearchAndRescue, Carry: true},
	{RoleSnR, KindSleep}:           {Next: KindSearchAndRescue, Divert: KindGoToAirport, Diverts: true},
	{RoleSnR, KindSearchAndRescue}: {Next: KindSleep},
	{RoleSnR, KindGoToAirport}:     {Terminal: true},

	{RoleDRO, KindArrival}:        {Next: KindDisasterRelief, Carry: true},
	{RoleDRO, KindSleep}:          {Next: KindDisasterRelief},
	{RoleDRO, KindDisasterRelief}: {Next: KindSleep},
}

// initialKinds maps each role to the activity it starts in. Residents wake
// up in the area; responders first have to arrive.
var initialKinds = [numRoles]ActivityKind{
	RoleHealthy:    KindSleep,
	RoleInjured:    KindSleep,
	RoleScientist:  KindSleep,
	RoleGovernment: KindSleep,
	RoleUN:         KindArrival,
	RoleSnR:        KindArrival,
	RoleDRO:        KindArrival,
}

// LookupTransition returns the transition for a completed activity.
func LookupTransition(r Role, k ActivityKind) (Transition, bool) {
	t, ok := transitions[transitionKey{r, k}]
	return t, ok
}

// roleKinds lists every activity a role can reach.
func roleKinds(r Role) []ActivityKind {
	var seen [numKinds]bool
	seen[initialKinds[r]] = true
	for key, t := range transitions {
		if key.role != r {
			continue
		}
		seen[key.kind] = true
		if !t.Terminal {
			seen[t.Next] = true
		}
		if t.Diverts {
			seen[t.Divert] = true
		}
	}
	var out []ActivityKind
	for k, ok := range seen {
		if ok {
			out = append(out, ActivityKind(k))
		}
	}
	return out
}
