package ui

const themeInitScript = `(function(){
  var root=document.documentElement;
  var media=window.matchMedia('(prefers-color-scheme: dark)');
  function normalize(mode){
    return mode==='light'||mode==='dark'||mode==='auto'?mode:'auto';
  }
  function apply(mode){
    var selected=normalize(mode);
    var resolved=selected==='auto'?(media.matches?'dark':'light'):selected;
    root.setAttribute('data-color-mode',selected);
    root.setAttribute('data-theme',resolved);
  }
  var stored='auto';
  try {
    stored=normalize(localStorage.getItem('bricksync-ui-theme')||'auto');
  } catch (_) {}
  apply(stored);
  window.__bricksyncThemeApply=apply;
})();`

const themeToggleScript = `(function(){
  var root=document.documentElement;
  var media=window.matchMedia('(prefers-color-scheme: dark)');
  var toggle=document.getElementById('theme-toggle');
  if(!toggle||!window.__bricksyncThemeApply){ return; }
  function resolved(){
    var selected=root.getAttribute('data-color-mode')||'auto';
    return selected==='auto'?(media.matches?'dark':'light'):selected;
  }
  function sync(){
    var next=resolved()==='dark'?'light':'dark';
    toggle.textContent=next==='dark'?'Dark theme':'Light theme';
    toggle.setAttribute('data-next-theme',next);
  }
  toggle.addEventListener('click',function(){
    var next=toggle.getAttribute('data-next-theme')||'dark';
    window.__bricksyncThemeApply(next);
    try { localStorage.setItem('bricksync-ui-theme', next); } catch (_) {}
    sync();
  });
  sync();
})();`
