// Package common holds the pieces shared by the cli and embedding applications:
// the resolved engine configuration and the logger factory plugged into
// dragonboat's logger package, which every sKV package logs through.
package common
