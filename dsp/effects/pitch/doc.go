// Package pitch provides streaming time-domain pitch shifting based on
// WSOLA (waveform similarity overlap-add), suited to monophonic vocal
// material where low latency matters.
package pitch
