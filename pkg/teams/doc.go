// Package teams manages team records. Each user owns at most one team;
// subscriptions attach to teams, not to users.
package teams
