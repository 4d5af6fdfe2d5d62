// Command cintelviewer shows the live readings, trend and chart in a desktop window.
package main

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/spf13/cobra"

	"github.com/katehuntsman/cintel-05-cintel/src/config"
	"github.com/katehuntsman/cintel-05-cintel/src/dashboard"
	"github.com/katehuntsman/cintel-05-cintel/src/monitor"
	"github.com/katehuntsman/cintel-05-cintel/src/plot"
)

const windowWidth = 1000

// dark theme wrapper
type darkTheme struct{}

func (d *darkTheme) Color(name fyne.ThemeColorName, variant fyne.ThemeVariant) color.Color {
	return theme.DefaultTheme().Color(name, theme.VariantDark)
}
func (d *darkTheme) Font(style fyne.TextStyle) fyne.Resource { return theme.DefaultTheme().Font(style) }
func (d *darkTheme) Icon(name fyne.ThemeIconName) fyne.Resource {
	return theme.DefaultTheme().Icon(name)
}
func (d *darkTheme) Size(name fyne.ThemeSizeName) float32 { return theme.DefaultTheme().Size(name) }

func main() {
	var configPath, source string
	cmd := &cobra.Command{
		Use:   "cintelviewer",
		Short: "Desktop view of the live dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("source") {
				cfg.Source = source
				cfg.Interval = monitor.DefaultInterval(source)
			}
			monitor.SetLogLevel(cfg.LogLevel)
			return run(cfg)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Config file")
	cmd.Flags().StringVar(&source, "source", "", "Data source: environment or stock")
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	src, err := monitor.NewSource(cfg.Source, time.Now().UnixNano())
	if err != nil {
		return err
	}
	mon := monitor.New(src, monitor.WithInterval(cfg.Interval), monitor.WithWindowSize(cfg.WindowSize))
	defer mon.Close()

	a := app.NewWithID("io.github.katehuntsman.cintel")
	a.Settings().SetTheme(&darkTheme{})
	w := a.NewWindow(cfg.Title)
	w.Resize(fyne.NewSize(windowWidth, 760))

	opts := dashboard.ChartOptionsFor(src)
	opts.Width, opts.Height = plot.ComputeChartDimensions(windowWidth - 40)
	builder := newStateBuilder(src, opts)

	valueLabel := widget.NewLabelWithStyle("waiting for data", fyne.TextAlignLeading, fyne.TextStyle{Bold: true})
	clockLabel := widget.NewLabel("")
	trendLabel := widget.NewLabel("")
	chartImg := canvas.NewImageFromImage(image.NewRGBA(image.Rect(0, 0, opts.Width, opts.Height)))
	chartImg.FillMode = canvas.ImageFillContain
	chartImg.SetMinSize(fyne.NewSize(float32(opts.Width)*0.8, float32(opts.Height)*0.8))

	table := widget.NewTable(
		func() (int, int) { return builder.current().size() },
		func() fyne.CanvasObject { return widget.NewLabel("0000-00-00 00:00:00") },
		func(id widget.TableCellID, o fyne.CanvasObject) {
			o.(*widget.Label).SetText(builder.current().cell(id.Row, id.Col))
		},
	)
	table.SetColumnWidth(0, 180)

	exportBtn := widget.NewButtonWithIcon("Export PNG", theme.DocumentSaveIcon(), func() {
		exportChartPNG(w, chartImg, "cintel_chart.png")
	})

	valueCard := widget.NewCard("Current Value", "", container.NewVBox(valueLabel, trendLabel))
	clockCard := widget.NewCard("Current Date and Time", "", clockLabel)
	top := container.NewGridWithColumns(2, valueCard, clockCard)
	gridCard := widget.NewCard("Most Recent Readings", "", table)
	chartCard := widget.NewCard("Chart with Current Trend", "", chartImg)
	body := container.NewBorder(top, exportBtn, nil, nil,
		container.NewVSplit(gridCard, chartCard))
	w.SetContent(body)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	updates, unsubscribe := mon.Subscribe(1)
	defer unsubscribe()
	go func() { _ = mon.Run(ctx) }()
	go func() {
		for u := range updates {
			vs, err := builder.build(u)
			if err != nil {
				monitor.Warnf("[viewer] update %d: %v", u.Seq, err)
				continue
			}
			fyne.Do(func() {
				valueLabel.SetText(vs.valueText)
				clockLabel.SetText(vs.clockText)
				trendLabel.SetText(vs.trendText)
				chartImg.Image = vs.chart
				chartImg.Refresh()
				table.Refresh()
			})
		}
	}()

	w.ShowAndRun()
	return nil
}

// export PNG
func exportChartPNG(w fyne.Window, img *canvas.Image, defaultName string) {
	if w == nil || img == nil || img.Image == nil {
		dialog.ShowInformation("Export", "No chart to export.", w)
		return
	}
	snapshot := img.Image
	fs := dialog.NewFileSave(func(wc fyne.URIWriteCloser, err error) {
		if err != nil || wc == nil {
			return
		}
		defer wc.Close()
		if err := png.Encode(wc, snapshot); err != nil {
			dialog.ShowError(err, w)
		}
	}, w)
	fs.SetFileName(defaultName)
	fs.Show()
}
